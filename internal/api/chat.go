package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geminichat/internal/models"
)

type messageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) getChat(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	seq := h.conversations.Conversation(userID)
	c.JSON(http.StatusOK, seq.Store().Snapshot())
}

// postMessage submits a message. By default it answers 202 as soon as the
// user message is appended; with ?wait=1 it blocks until the reply lands.
// Dropped input is reported as accepted=false with status 200.
func (h *Handler) postMessage(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	seq := h.conversations.Conversation(userID)

	if wantsWait(c) {
		reply, accepted := seq.Send(c.Request.Context(), req.Text)
		if !accepted {
			c.JSON(http.StatusOK, gin.H{"accepted": false})
			return
		}
		resp := gin.H{"accepted": true}
		if reply.ID != "" {
			resp["reply"] = reply
		}
		if user, found := lastUserMessage(seq.Store().Messages()); found {
			resp["message"] = user
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	msg, accepted := seq.Submit(c.Request.Context(), req.Text)
	if !accepted {
		c.JSON(http.StatusOK, gin.H{"accepted": false})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true, "message": msg})
}

func (h *Handler) resetChat(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	seq := h.conversations.Conversation(userID)
	seq.Reset()
	c.JSON(http.StatusOK, seq.Store().Snapshot())
}

// chatEvents streams a snapshot on connect and after every change until the
// client goes away or the conversation is dropped.
func (h *Handler) chatEvents(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	store := h.conversations.Conversation(userID).Store()
	events, subID := store.Subscribe(ctx)
	defer store.Unsubscribe(subID)

	stream, ok := newEventStream(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}
	if err := stream.send("snapshot", store.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case snap, open := <-events:
			if !open {
				_ = stream.send("closed", gin.H{"reason": "conversation ended"})
				return
			}
			if err := stream.send("snapshot", snap); err != nil {
				return
			}
		}
	}
}

func wantsWait(c *gin.Context) bool {
	switch c.Query("wait") {
	case "1", "true", "yes":
		return true
	}
	return false
}

func lastUserMessage(msgs []models.Message) (models.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsUser() {
			return msgs[i], true
		}
	}
	return models.Message{}, false
}
