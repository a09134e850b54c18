// Package services implements clients for the external collaborators of the
// sync pipeline: the account service that owns the remote watchlist and the
// metadata catalog used for identifier conversion and show-status lookup.
//
// Both collaborators are consumed through small interfaces ([AccountService],
// [MetadataService]) so the pipeline core can be tested against doubles.
package services
