// Package dictionary holds the semantic keyword tables used to recognise
// fingerprinting sources.
//
// Each table maps a lower-case keyword to the semantic group it discloses
// and a short claim. Matching is substring containment on lower-cased text,
// so "(min-device-width: 400px)" hits both "width" and "device-width".
package dictionary
