// Package sscloud contains version information shared by the command-line
// tools in cmd/.
package sscloud

// VersionString is the version of the slipstream-cloud tools.
var VersionString = "0.1.0"

// CopyrightString is shown by the command-line tools.
var CopyrightString = "(c) 2017 SixSq Sàrl"
