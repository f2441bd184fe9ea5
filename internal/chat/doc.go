// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

/*
Package chat implements the real-time circle-chat core: the connection
registry, the membership-aware fan-out engine, and the live notification
broadcaster, on top of gorilla/websocket.

Key components:

  - Hub: the registry of live authenticated connections and the fan-out
    engine that routes persisted messages to circle members
  - Client: one connection, with read/write goroutines, a per-connection
    membership cache, and an ordered delivery-verification queue
  - Frames: the tagged union of inbound and outbound protocol frames

Each client runs three goroutines:

  - readPump: reads frames from the socket and hands them to the hub
  - writePump: the sole socket writer; drains the send queue, manages pings
  - verifyPump: re-verifies membership against storage per queued delivery

Consistency model:

A connection's membership cache is a point-in-time snapshot that is allowed
to go stale. It is used only to select broadcast candidates; every actual
delivery re-verifies membership against storage, so a user who left a circle
stops receiving its messages even while their cache still lists it. The
cache is corrected asynchronously when staleness is observed, on an explicit
refresh_circles frame, and when a send is rejected for non-membership. This
stale-cache-plus-lazy-reverification design is deliberate: refreshing every
cache synchronously on every membership change would serialize all fan-out.

Within a circle, messages reach every recipient in persistence order;
across circles no order is promised, and no delivery is atomic across
recipients.
*/
package chat
