package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"genai-studio/common"
	"genai-studio/internal/studio"
	"genai-studio/internal/utils"
)

// pageData 模板渲染数据
type pageData struct {
	Tab          string
	Notice       string
	Snapshot     studio.Snapshot
	AspectRatios []studio.AspectRatio
	Counts       []int
	Images       []studio.Image
	Filter       studio.Filter
	Image        studio.Image
	ShareURL     string
	CanShare     bool
}

func (s *Server) page(r *http.Request, tab string) pageData {
	counts := make([]int, 0, studio.MaxImages)
	for n := studio.MinImages; n <= studio.MaxImages; n++ {
		counts = append(counts, n)
	}
	return pageData{
		Tab:          tab,
		Notice:       r.URL.Query().Get("notice"),
		Snapshot:     s.session.Snapshot(),
		AspectRatios: studio.AspectRatios,
		Counts:       counts,
		CanShare:     s.session.CanShare(),
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		common.WithError(err).WithField("template", name).Error("Failed to render page")
	}
}

// redirect 跳转回页面；本地输入错误作为提示附在地址上，
// 远程请求失败已记录在会话的错误状态中，不再重复提示
func redirect(w http.ResponseWriter, r *http.Request, target string, err error) {
	if err != nil && !studio.IsRequestError(err) {
		common.WithError(err).WithField("path", r.URL.Path).Warn("Rejected studio action")
		target += "?" + url.Values{"notice": {err.Error()}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index.html", s.page(r, "studio"))
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	err := s.session.SetMode(studio.Mode(r.FormValue("mode")))
	redirect(w, r, "/", err)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := s.applyOptions(r); err != nil {
		redirect(w, r, "/", err)
		return
	}
	redirect(w, r, "/", s.session.Submit(r.Context()))
}

// applyOptions 把表单中的提示词与生成选项写入会话
func (s *Server) applyOptions(r *http.Request) error {
	s.session.SetPrompt(r.PostFormValue("prompt"))
	if ratio := r.PostFormValue("aspect_ratio"); ratio != "" {
		if err := s.session.SetAspectRatio(studio.AspectRatio(ratio)); err != nil {
			return err
		}
	}
	if count := r.PostFormValue("number_of_images"); count != "" {
		n, err := strconv.Atoi(count)
		if err != nil {
			return fmt.Errorf("%w: %q", studio.ErrInvalidImageCount, count)
		}
		if err := s.session.SetNumberOfImages(n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleGenerateMore(w http.ResponseWriter, r *http.Request) {
	redirect(w, r, "/", s.session.GenerateMore(r.Context()))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUpload + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > limit {
			redirect(w, r, "/", studio.ErrImageTooLarge)
			return
		}
		redirect(w, r, "/", studio.ErrUnreadableImage)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		redirect(w, r, "/", studio.ErrNotImage)
		return
	}
	defer file.Close()

	err = s.session.Upload(header.Filename, header.Header.Get("Content-Type"), file)
	redirect(w, r, "/", err)
}

func (s *Server) handleClearSource(w http.ResponseWriter, r *http.Request) {
	s.session.ClearSource()
	redirect(w, r, "/", nil)
}

func (s *Server) handleSelectResult(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid result index", http.StatusBadRequest)
		return
	}
	redirect(w, r, "/", s.session.SelectResult(i))
}

func (s *Server) handleDownloadResult(w http.ResponseWriter, r *http.Request) {
	data, mimeType, ok := s.session.SelectedImage()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeAttachment(w, utils.ResultFileName(s.now()), mimeType, data)
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	filter, err := studio.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		redirect(w, r, "/gallery", err)
		return
	}
	data := s.page(r, "gallery")
	data.Filter = filter
	data.Images = s.session.Gallery(filter)
	s.render(w, "gallery.html", data)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	s.renderImage(w, r, "detail.html", "")
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	s.renderImage(w, r, "confirm.html", "")
}

func (s *Server) renderImage(w http.ResponseWriter, r *http.Request, name, shareURL string) {
	img, err := s.session.Image(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data := s.page(r, "gallery")
	data.Image = img
	data.ShareURL = shareURL
	s.render(w, name, data)
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.session.ToggleFavorite(id); err != nil {
		redirect(w, r, "/gallery", err)
		return
	}
	target := "/gallery/" + url.PathEscape(id)
	if r.PostFormValue("return") == "/gallery" {
		filter, err := studio.ParseFilter(r.PostFormValue("filter"))
		if err != nil {
			filter = studio.FilterAll
		}
		target = "/gallery?" + url.Values{"filter": {string(filter)}}.Encode()
	}
	redirect(w, r, target, nil)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if r.PostFormValue("confirm") != "yes" {
		http.Redirect(w, r, "/gallery/"+url.PathEscape(id)+"/delete", http.StatusSeeOther)
		return
	}
	redirect(w, r, "/gallery", s.session.DeleteImage(id))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	data, img, err := s.session.ImageBytes(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeAttachment(w, utils.DownloadFileName(img.Prompt, img.ID), img.MIMEType, data)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	shareURL, err := s.session.Share(r.Context(), id)
	if err != nil {
		redirect(w, r, "/gallery/"+url.PathEscape(id), err)
		return
	}
	s.renderImage(w, r, "detail.html", shareURL)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.session.Snapshot())
}

func (s *Server) handleAPIGallery(w http.ResponseWriter, r *http.Request) {
	filter, err := studio.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.session.Gallery(filter))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		common.WithError(err).Error("Failed to encode JSON response")
	}
}

func writeAttachment(w http.ResponseWriter, filename, mimeType string, data []byte) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
