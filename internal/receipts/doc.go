// Package receipts keeps a SQLite journal of completed payments. Only the
// cart snapshot taken at checkout is stored; live cart and detection state
// never touch disk.
package receipts
