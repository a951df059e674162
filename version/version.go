// Package version haelt die Gateway-Version
package version

var Version string = "0.0.0"
