/*
Package api implements the HTTP surface of cvld.

Read paths (/object, /list, /ts, /info, /trust) execute directly against the
store and the timeseries sources. Write paths (/publish, /delete, /control,
/query, /state) translate into coordinator operations; in read-only mode they
all answer 404. /events upgrades to a server-sent event stream and registers
the caller as a subscriber.

Errors are uniformly 404 with body "Not found"; responses over 1 KiB are
gzip-compressed when the client accepts gzip and compression actually wins.
CORS is permissive.
*/
package api
