// Package core defines the data items that flow through workflow graphs
// and the document pipeline: content-addressed identifiers, the DataValue
// carried between nodes, and the file category taxonomy used for routing.
package core
