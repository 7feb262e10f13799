package config

// Version is the current infoflow version. Set at build time via -ldflags,
// or by editing this file, the same as the teacher's own release process.
var Version = "0.1.0"
