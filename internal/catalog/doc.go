// Package catalog maintains the car-level session index and renders TOC.md.
//
// The index is a small SQLite database living beside the car folder's
// DROP-OFF and SESSIONS areas. Finalizing a session upserts its row and
// rewrites TOC.md from the full index, so the table of contents is always a
// pure function of the database.
package catalog
