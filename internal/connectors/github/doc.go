// Package github reads repository metadata and files from the GitHub API
// for repository extraction.
//
// # Authentication
//
// A personal access token is optional. Without one the client makes
// unauthenticated requests, which GitHub limits to 60 per hour; with one the
// limit is 5,000 per hour and private repositories become readable.
//
// # Rate Limiting
//
// The client implements a dual-strategy rate limiting approach:
//
//  1. Proactive throttling: a token bucket limits request rate.
//
//  2. Reactive handling: the client tracks X-RateLimit-Remaining and
//     X-RateLimit-Reset headers and, when the remaining quota drops below a
//     buffer, waits until the reset time.
//
// # Repository Locators
//
// [ParseRepoURL] accepts https://github.com/{owner}/{repo} (with optional
// .git suffix and trailing path), git@github.com:{owner}/{repo}.git and the
// short {owner}/{repo} form.
package github
