package types

// Version is the herald release version, overridden at build time via ldflags
var Version = "dev"
