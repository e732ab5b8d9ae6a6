package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	generationdomain "github.com/roomvision/roomvision/internal/generation/domain"
	"github.com/roomvision/roomvision/pkg/db/pagination"
)

type generateRequest struct {
	ImageURL string `json:"image_url"`
	Mode     string `json:"mode"`
	RoomType string `json:"room_type"`
	Style    string `json:"style"`
	Effect   string `json:"effect"`
}

func (s *Server) ListEffects(c *gin.Context) {
	effects, err := s.generationSvc.ListEffects(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"effects": effects})
}

func (s *Server) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	video, err := s.generationSvc.Generate(c.Request.Context(), generationdomain.GenerateRequest{
		UserID:   s.currentUserID(c),
		ImageURL: strings.TrimSpace(req.ImageURL),
		Mode:     generationdomain.GenerationMode(strings.TrimSpace(req.Mode)),
		RoomType: strings.TrimSpace(req.RoomType),
		Style:    strings.TrimSpace(req.Style),
		Effect:   strings.TrimSpace(req.Effect),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"video": video})
}

func (s *Server) ListVideos(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.generationSvc.ListVideos(c.Request.Context(), generationdomain.ListVideosRequest{
		Pagination: page,
		UserID:     s.currentUserID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetVideo(c *gin.Context) {
	id, err := parseVideoID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	video, err := s.generationSvc.GetVideo(c.Request.Context(), s.currentUserID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}

func (s *Server) RefreshVideo(c *gin.Context) {
	id, err := parseVideoID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	video, err := s.generationSvc.RefreshStatus(c.Request.Context(), s.currentUserID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}

func parseVideoID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, newValidationError("id", "invalid_video_id", "invalid video id")
	}
	return id, nil
}
