// Package file provides filesystem adapters: a phase graph source backed by a
// YAML or JSON file, with hot reload through fsnotify, and a JSON session store.
package file
