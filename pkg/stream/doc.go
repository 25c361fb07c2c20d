/*
Package stream contains the gateway's streaming primitives.

CheckReader is a pass-through byte stream carrying a running MD5, a byte
counter, an idle watchdog, and a max-size guard. It sits between the
client and the storage nodes on writes, and between the storage nodes and
the client on reads, so that content integrity is verified end to end.

PageStream is a single-vnode paginated iterator: it wraps a page-fetching
function and transparently re-issues the listing call with the last-seen
marker whenever a page comes back full. AdvanceTo lets a consumer jump
forward past a range of names without reading them.

Merge is the k-way merge-paginator over PageStreams. It fans page
fetches out across the streams, selects the lowest head under byte-wise
compare, applies prefix/delimiter grouping (folding a common-prefix
range into a single group record and jumping all streams past the
covered range), and enforces a global entry limit. Emitted names are
strictly non-decreasing.
*/
package stream
