// Package models defines the wire-level domain models exchanged with the
// trip-planning backend.
//
// # Models
//
//   - User: a registered account, including the wallet balance shown on the
//     dashboard
//   - Membership: a user-to-group edge carrying a role
//   - Group: a travel group owning trip proposals
//   - Proposal: a trip proposed to a group by one of its members
//   - Approval: one member's verdict on one proposal
//   - Notification: a server-pushed event delivered over the realtime channel
//
// # Design Principles
//
// 1. **Wire fidelity**: JSON field names match the backend contract exactly;
// the server owns the schema and this client only mirrors it.
// 2. **IDs over pointers**: relationships use embedded reference structs
// (ProposalRef.Group, ProposalRef.ProposedBy) the way the server serializes
// them, never client-side object graphs.
// 3. **No behavior**: models are plain data; all fetching and caching logic
// lives in the api, session and view packages.
package models
