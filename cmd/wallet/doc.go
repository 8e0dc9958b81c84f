// The wallet command manages threshold-wallet recovery factors and their
// encrypted remote backups.
package main
