// Package dataset reads measurement inputs and draws reproducible samples.
//
// A dataset is a CSV file with the header "Original Link,Resolved CID"
// followed by one row per article. The resolve command produces such files
// from a plain list of links.
package dataset
