// Package testutil holds test doubles shared across packages.
//
// MockNATSClient stands in for natsclient.Client wherever only Publish and
// Subscribe are needed, and can be told to fail a number of publishes to
// exercise retry paths.
package testutil
