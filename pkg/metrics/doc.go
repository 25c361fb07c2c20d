/*
Package metrics exposes the gateway's Prometheus metrics.

Metrics are declared as package-level collectors and registered once at
init. The scrape endpoint is served on a dedicated metrics listener, not
the front door, so overload on the data path cannot starve observability.

Request counters and histograms are labeled by operation (putobject,
listbuckets, ...), method, and status only; remote IP, object owner, and
caller identity are deliberately excluded to keep cardinality bounded.
*/
package metrics
