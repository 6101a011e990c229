// Package build exposes compile-time flags that tune runtime behavior
// between development and production builds, the way rivine's build
// package does for the whole node.
package build

// DEBUG indicates whether this is a debug build. No code in this module
// currently reads it.
const DEBUG = false

// Release indicates the kind of release that is built: "standard",
// "testing", or "dev". The walletd version command reads it to suffix the
// printed version.
const Release = "standard"

// Version is the semantic version of this build of the wallet core, without
// a leading "v" (callers print it as "v" + Version).
const Version = "0.1.0"
