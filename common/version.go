package common

// Version is set at build time via -ldflags.
var Version = "dev"

// PackageName tags metrics and logs emitted by this module.
const PackageName = "w3a-mpc"
