package router

import (
	"errors"
	"strings"

	httperrors "github.com/HnustLzh2/http/internal/errors"
	"github.com/HnustLzh2/http/internal/request"
	"github.com/HnustLzh2/http/internal/response"
	"github.com/HnustLzh2/http/internal/storage"
)

// POST /files/{name}：写入 body，返回 201
func fileWriteHandler(req *request.Request, dir storage.Dir) (*response.Response, error) {
	name := strings.TrimPrefix(req.Path, filesPrefix)
	if err := dir.WriteFile(name, req.Body); err != nil {
		return nil, err
	}
	return response.Created(), nil
}

// GET /files/{name}：文件存在返回内容，否则 404
func fileReadHandler(req *request.Request, dir storage.Dir) (*response.Response, error) {
	name := strings.TrimPrefix(req.Path, filesPrefix)
	data, err := dir.ReadFile(name)
	if errors.Is(err, storage.ErrNotExist) {
		return response.NotFound(), nil
	}
	if err != nil {
		return nil, err
	}
	return response.OK(response.TypeOctetStream, data), nil
}

// /echo/{text}：原样返回 text
func echoHandler(req *request.Request, _ storage.Dir) (*response.Response, error) {
	text := strings.TrimPrefix(req.Path, echoPrefix)
	return response.OK(response.TypeTextPlain, []byte(text)), nil
}

// /user-agent：返回请求的 User-Agent，没有该请求头时返回 MissingUserAgent
func userAgentHandler(req *request.Request, _ storage.Dir) (*response.Response, error) {
	if !req.HasUserAgent {
		return nil, httperrors.New(httperrors.MissingUserAgent, "no User-Agent header", nil)
	}
	return response.OK(response.TypeTextPlain, []byte(req.UserAgent)), nil
}

// 根路径：200，无 body
func rootHandler(_ *request.Request, _ storage.Dir) (*response.Response, error) {
	return response.OK(response.TypeTextPlain, nil), nil
}

func notFoundHandler(_ *request.Request, _ storage.Dir) (*response.Response, error) {
	return response.NotFound(), nil
}
