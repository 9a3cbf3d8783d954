// Package scheduler triggers periodic jobs from cron expressions or fixed
// intervals. A job never overlaps with its own previous run.
package scheduler
