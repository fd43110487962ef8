// Package memory implements approval.Service as a process-local registry of
// live polls. Each poll owns a deadline timer and, when it outlives a display
// surface, a refresh timer; removing a poll always stops both.
package memory
