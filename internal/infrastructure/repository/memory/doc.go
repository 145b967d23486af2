// Package memory provides an in-process implementation of every repository the
// authorization server needs. It suits development, tests and single-instance deployments.
package memory
