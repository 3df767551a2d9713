// Package lawapi talks to the national legal registry (law.go.kr).
//
// # Architecture
//
//   - Client: the rate-limited fetcher. Every upstream call goes through one
//     Client and therefore one RateLimiter.
//   - RateLimiter: a token bucket (golang.org/x/time/rate) plus reactive
//     Retry-After pauses and a daily call ceiling counted through a
//     [driven.QuotaCounter], so several processes can share one quota.
//   - Interpreter: turns responses into usable field maps. Listings are
//     parsed directly. Details are read from the structured API first and,
//     when that response is unusable, from the rendered document page.
//
// # Retry Policy
//
// HTTP 429, 5xx, network timeouts and upstream system errors are retried
// with exponential backoff up to the configured limit, then reported as
// [domain.FetchFailure]. Rejected keys (401, 403, result codes 01/02/09)
// and other client errors fail immediately. Result code 20 and the local
// daily ceiling return [domain.ErrDailyQuotaExceeded], which ends a run.
//
// # Fallback
//
// A structured detail is usable when it parses, carries no "no data" notice
// and has a non-empty identity field. Otherwise the document page
// (/LSW/precInfoP.do, detcInfoP.do or expcInfoP.do) is fetched once. Its
// content frame is followed when present, and 【heading】 sections are
// mapped onto canonical fields through the record parser. If the page
// yields nothing usable the document is reported as
// [domain.UnrecoverableError].
package lawapi
