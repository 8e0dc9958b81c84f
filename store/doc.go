// Package store provides backup store backends beyond Google Drive: local
// filesystem, Amazon S3 compatible object storage, and HashiCorp Vault KV v2.
// A factory creates the right backend from a location URI.
package store
