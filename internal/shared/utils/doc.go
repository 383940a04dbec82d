// Package utils validates request input before it reaches the domain:
// storage keys, partitions, service IDs, reply text and JSON payloads
// (size, syntax and nesting depth).
package utils
