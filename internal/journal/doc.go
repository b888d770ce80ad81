// Package journal records batch runs and their jobs in a SQLite database.
//
// A run row is inserted before dispatch, one job row is appended per
// finished job, and FinishRun stamps the counters and terminal status. The
// journal is optional and purely historical: nothing in a run reads it back.
package journal
