/*
Package object implements the shared-object table and its persistence.

An Object pairs optional JSON metadata with optional opaque bytes under a
client-chosen key. The Store keeps the key to object mapping in memory and,
when a persistence directory is configured, mirrors each object to a pair of
flat files: <id>.meta (JSON record) and <id>.data (raw bytes, absent when the
object carries no data). On startup the directory is scanned and every
parseable pair is loaded back; the object id counter resumes one past the
largest id seen.

The coordinator is the only mutator of objects. Read paths observe objects
without coordination, which can expose a metadata update before its matching
data write; that window is accepted.
*/
package object
