// Package version provides the build version of cla-bot.
package version

// Version contains the application version number. It's set via ldflags when
// building.
var Version = ""

// CommitSHA contains the SHA of the commit that this application was built
// against. It's set via ldflags when building.
var CommitSHA = ""
