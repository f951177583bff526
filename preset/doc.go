// Package preset persists multisong presets. Presets are encoded as YAML and
// stored through a Repository: a directory of .yml files, a SQLite table or
// plain memory.
package preset
