package server

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/render"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FormField is the multipart field carrying the image.
const FormField = "image"

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"classes": s.analyzer.ClassNames(),
	})
}

// readImage returns the request image from a multipart field or the raw body.
func readImage(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile(FormField)
		if err != nil {
			return nil, errors.Wrapf(err, "form field %q", FormField)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, errors.Wrap(err, "open upload")
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}

func (s *Server) decodeRequest(c *gin.Context) (images.Image, bool) {
	data, err := readImage(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request too large"})
			return images.Image{}, false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return images.Image{}, false
	}
	if len(data) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "empty image"})
		return images.Image{}, false
	}

	img, err := images.Decode(data)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return images.Image{}, false
	}
	return img, true
}

func (s *Server) analyze(c *gin.Context, img images.Image) (Analysis, bool) {
	analysis, err := s.analyzer.Analyze(c.Request.Context(), img.Image, c.Query("target"))
	switch {
	case err == nil:
		return analysis, true
	case errors.Is(err, ErrUnknownClass):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.AbortWithStatus(499)
	default:
		s.logger.Error("analysis failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
	}
	return Analysis{}, false
}

func (s *Server) classify(c *gin.Context) {
	img, ok := s.decodeRequest(c)
	if !ok {
		return
	}
	analysis, ok := s.analyze(c, img)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) overlay(c *gin.Context) {
	img, ok := s.decodeRequest(c)
	if !ok {
		return
	}
	analysis, ok := s.analyze(c, img)
	if !ok {
		return
	}

	color := render.White
	if analysis.Target != nil && analysis.Target.Probability > s.opts.PoseThreshold {
		color = render.Green
	}

	out, err := render.Skeleton(img.Image, analysis.pose, s.opts.Gate.KeypointThreshold, color)
	if err != nil {
		s.logger.Error("overlay failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "overlay failed"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", out)
}
