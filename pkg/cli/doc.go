// Package cli implements the protoguard command line tool.
//
// # Commands
//
//	check    validate JSON instances of a message against the rules manifest
//	rules    compile the manifest and list the constrained messages
//	version  print the version
//
// # Usage Examples
//
// Validate two request bodies, reporting every violation:
//
//	protoguard check -rules protoguard.yaml \
//	  -message saltfishpr.demo.user.v1.UpdateUserRequest \
//	  -mode accumulate_all update-1.json update-2.json
//
// Show the rules of one message:
//
//	protoguard rules -message saltfishpr.demo.user.v1.UpdateUserRequest.User
//
// # Exit Codes
//
// check exits 0 when every instance is valid, 1 when any instance has
// violations and 2 for usage, configuration or decode errors.
package cli
