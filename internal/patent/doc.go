// Package patent defines the domain types shared across the collector: tasks,
// identifiers, extracted records, and the capabilities the worker depends on.
package patent
