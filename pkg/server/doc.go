// Package server provides the thin HTTP front end for the filtering
// pipeline: request routing, JSON rendering, health and metrics endpoints,
// and graceful shutdown. All filtering logic lives in pkg/pipeline; this
// layer only translates between HTTP and pipeline values.
package server
