// Package config defines the format-agnostic pipeline configuration model
// for the application, along with the Loader interface for reading it from
// a source format.
//
// The config.Model is the single source of truth for the matrix, publish,
// cachefetch and lint packages. The concrete HCL implementation of the
// Loader interface lives in the hcl package.
package config
