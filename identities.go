package tether

import "github.com/zoobzio/pipz"

// applyID identifies the terminal pipeline stage that applies a processed
// update to the property.
var applyID = pipz.NewIdentity("tether:apply", "Apply update to property")
