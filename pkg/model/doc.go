// Package model defines the provider-agnostic contract shared by every
// capability package.
//
// It contains:
//   - [Model]: the single call interface implemented per capability and vendor
//   - [Metadata], [Usage] and [RateLimit]: response metadata common to all capabilities
//   - [Merge], [MergePtr] and [MergeSlice]: field-level helpers used by the
//     Options types to layer defaults under per-call overrides
//
// Capability packages ([github.com/germanamz/modelkit/pkg/chat],
// [github.com/germanamz/modelkit/pkg/embedding],
// [github.com/germanamz/modelkit/pkg/image],
// [github.com/germanamz/modelkit/pkg/speech],
// [github.com/germanamz/modelkit/pkg/transcription]) build on these types. No
// HTTP or vendor code lives here.
package model
