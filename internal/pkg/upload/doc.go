// Package upload streams multipart/form-data requests to disk.
//
// Text fields are kept in memory. File parts are written to randomly named
// files under a configured directory after their declared type, optional
// content sniffing and size have been checked. On any error every file
// written for the request is removed again, so callers only receive paths
// for fully accepted uploads.
package upload
