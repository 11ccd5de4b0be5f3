// Package http holds the read-only REST handlers over the relay state.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/TableRelay/internal/core"
	"github.com/dkeye/TableRelay/internal/domain"
)

// RoomEvictor removes a room and disconnects its members from it.
type RoomEvictor interface {
	EvictRoom(id domain.RoomID) bool
}

type RoomHandlers struct {
	Rooms   core.RoomManager
	Evictor RoomEvictor
}

type RoomResponse struct {
	core.RoomInfo
	Members []core.MemberDTO `json:"member_list"`
}

func (h *RoomHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Rooms.List()})
}

func (h *RoomHandlers) Get(c *gin.Context) {
	room, ok := h.Rooms.GetRoom(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, RoomResponse{RoomInfo: room.Info(), Members: room.MembersSnapshot()})
}

func (h *RoomHandlers) Delete(c *gin.Context) {
	if !h.Evictor.EvictRoom(domain.RoomID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
