// Package types defines the JSON bodies exchanged by the turnstile HTTP API:
// admission decisions, limiter listings and error responses.
//
// Every error is returned in the same envelope:
//
//	{
//	  "error": {
//	    "message": "unknown limiter: payments",
//	    "type": "not_found",
//	    "param": "name",
//	    "code": "unknown_limiter"
//	  }
//	}
package types
