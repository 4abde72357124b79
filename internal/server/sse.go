package server

import (
	"time"

	"github.com/dochub-labs/dochub/backend/internal/catalog"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	streamEventReady            = "ready"
	streamEventHeartbeat        = "heartbeat"
	streamEventSectionsSnapshot = "sections-snapshot"
	streamEventLinksSnapshot    = "links-snapshot"
	streamEventError            = "stream-error"

	streamHeartbeatInterval = 30 * time.Second
)

type sectionsSnapshotPayload struct {
	Sections []catalog.Section `json:"sections"`
}

type linksSnapshotPayload struct {
	Links []catalog.Resource `json:"links"`
}

type streamErrorPayload struct {
	Collection string `json:"collection"`
}

// handleCatalogStream pushes full-collection snapshots over server-sent
// events. Clients replace their local collections with each snapshot; no
// incremental patches are ever sent.
func (h *httpHandler) handleCatalogStream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	sectionEvents, cancelSections := h.stream.SubscribeSections(ctx)
	resourceEvents, cancelResources := h.stream.SubscribeResources(ctx)
	defer cancelSections()
	defer cancelResources()

	// Seed the subscriber with the current state of both collections so it
	// never has to wait for the next write to render.
	sections, err := h.catalog.ListSections(ctx)
	if err != nil {
		h.logger.Warn("stream seed query failed", zap.Error(err))
		c.SSEvent(streamEventError, streamErrorPayload{Collection: "sections"})
	} else {
		c.SSEvent(streamEventSectionsSnapshot, sectionsSnapshotPayload{Sections: sections})
	}
	resources, err := h.catalog.ListResources(ctx)
	if err != nil {
		h.logger.Warn("stream seed query failed", zap.Error(err))
		c.SSEvent(streamEventError, streamErrorPayload{Collection: "links"})
	} else {
		c.SSEvent(streamEventLinksSnapshot, linksSnapshotPayload{Links: resources})
	}
	c.SSEvent(streamEventReady, gin.H{})
	c.Writer.Flush()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sectionEvents:
			if !ok {
				return
			}
			if event.Err != nil {
				c.SSEvent(streamEventError, streamErrorPayload{Collection: "sections"})
			} else {
				c.SSEvent(streamEventSectionsSnapshot, sectionsSnapshotPayload{Sections: event.Sections})
			}
		case event, ok := <-resourceEvents:
			if !ok {
				return
			}
			if event.Err != nil {
				c.SSEvent(streamEventError, streamErrorPayload{Collection: "links"})
			} else {
				c.SSEvent(streamEventLinksSnapshot, linksSnapshotPayload{Links: event.Resources})
			}
		case <-heartbeat.C:
			c.SSEvent(streamEventHeartbeat, gin.H{"at": time.Now().UTC().Format(time.RFC3339)})
		}
		c.Writer.Flush()
	}
}
