package httpapi

import (
	"net/http"
)

type uploadURLRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type uploadURLResponse struct {
	File      fileResponse `json:"file"`
	UploadURL string       `json:"upload_url"`
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user := UserFrom(r.Context())
	file, url, err := s.files.RequestUpload(r.Context(), user.ID, req.FileName, req.ContentType, req.Size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadURLResponse{File: toFileResponse(file), UploadURL: url})
}

func (s *Server) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user := UserFrom(r.Context())
	if err := s.files.CompleteUpload(r.Context(), user.ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded"})
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user := UserFrom(r.Context())
	url, err := s.files.GetDownloadURL(r.Context(), user.ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	files, err := s.files.List(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFileResponse(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user := UserFrom(r.Context())
	if err := s.files.Delete(r.Context(), user.ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
