/*
Package timeseries reads append-only records from SQLite table files.

Each source file carries a resources table (ts, modified, path, type, content)
and a meta table holding a JSON properties document. The read path is a range
query over the half-open window (t0, t1] in ascending ts order; the lower
bound is exclusive so pollers can pass the last ts they saw. Content columns
hold JSON and are decoded before serving.
*/
package timeseries
