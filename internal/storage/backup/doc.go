// Package backup maintains the backup and rotating sequence copies of a
// primary save file.
//
// For a primary "a.sav" the backup is "a.savB" and the sequence files are
// "a.sav0" through "a.sav<N-1>". A corrupt backup is archived as
// "a.savB_bad" before it is regenerated.
package backup
