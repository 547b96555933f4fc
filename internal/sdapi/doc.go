// Package sdapi provides an HTTP client for the /sdapi/v1 image-generation API.
//
// # Overview
//
// The client is a stateless request wrapper: it translates typed calls into
// backend HTTP requests, attaches the bearer credential when one is
// configured, and decodes responses into the types in types.go. It keeps no
// cache and never retries.
//
// # Files
//
//   - client.go: Client, its options and the request helpers
//   - config.go: BackendConfig and endpoint normalization
//   - types.go: wire payloads and the decoded Progress/GenerationResult
//   - errors.go: BackendError and ErrBackendUnavailable
//
// # Usage
//
//	client := sdapi.NewClient()
//	if err := client.Configure(sdapi.BackendConfig{Endpoint: "gpu.local:7860"}); err != nil {
//		return err
//	}
//	if !client.TestConnection(ctx) {
//		return errors.New("could not connect")
//	}
//	models, err := client.ListModels(ctx)
//
// # Endpoints
//
//   - GET  /sdapi/v1/options: connectivity probe and current checkpoint
//   - POST /sdapi/v1/options: switch checkpoint
//   - GET  /sdapi/v1/sd-models, /sdapi/v1/samplers: catalog snapshots
//   - POST /sdapi/v1/txt2img: generation (batch_size images, n_iter fixed at 1)
//   - GET  /sdapi/v1/progress: progress of the running job, zero when idle
//   - POST /sdapi/v1/interrupt: best-effort cancel of the running job
//
// # Errors
//
// Every call except TestConnection fails with a *BackendError that matches
// errors.Is(err, ErrBackendUnavailable). It carries the path, the HTTP status
// and a trimmed copy of the response body when the backend answered.
// TestConnection collapses all failures to false.
//
// Example error messages:
//   - "/sdapi/v1/sd-models: execute request: dial tcp: connection refused"
//   - "/sdapi/v1/txt2img returned status 500: CUDA out of memory"
//
// # Timeouts
//
// Read calls and interrupt are bounded by a read timeout (30s by default).
// txt2img and checkpoint switches are not: a generation may take minutes, and
// callers that want a deadline pass one through the context.
package sdapi
