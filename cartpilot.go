// Package cartpilot turns a grocery shopping list into a remote Instamart
// cart and, optionally, a placed order. Most applications interact with the
// module through three packages:
//  1. builder — the CartBuilder implementations (reasoning-model driven or
//     scripted) that do the actual cart construction
//  2. order — the persisted order record lifecycle and checkout step
//  3. chatflow — the deterministic conversational flow used by chat UIs
//
// The remaining packages (instamart, tool, model, session, config, api) are
// the supporting surfaces: the remote cart client, the tool-calling contract
// exposed to reasoning models, provider adapters, credential storage,
// configuration and the REST handlers. All defaults are safe for local
// development; production deployments supply a durable order store, a Redis
// session store and a structured logger.
package cartpilot

// Version is the current cartpilot release.
const Version = "0.3.1"
