// Package hcl provides the concrete HCL implementation of the configuration
// Loader interface defined in the config package. It is responsible for file
// parsing and HCL-to-model translation.
package hcl
