package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"library-api/internal/authz"
	"library-api/internal/service"
	"library-api/internal/transport/http/ez"
)

type MemberHandler struct{ svc *service.MemberService }

func NewMemberHandler(svc *service.MemberService) *MemberHandler { return &MemberHandler{svc: svc} }

func (h *MemberHandler) Priority() int { return 30 }

func (h *MemberHandler) MountAPI(e ez.EZ) {
	g := e.Group("/members")

	ez.RegisterAction(g, ez.Action[service.MemberListQuery, gin.H]{
		Method:  http.MethodGet,
		Binder:  ez.BindQuery,
		Message: "Members retrieved successfully",
		Handler: func(c *gin.Context, _ authz.Actor, in *service.MemberListQuery) (gin.H, error) {
			ms, page, err := h.svc.List(c.Request.Context(), *in)
			if err != nil {
				return nil, err
			}
			return gin.H{"members": ms, "pagination": page}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[struct{}, gin.H]{
		Method:  http.MethodGet,
		Path:    "/:id",
		Message: "Member retrieved successfully",
		Handler: func(c *gin.Context, _ authz.Actor, _ *struct{}) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			m, err := h.svc.Get(c.Request.Context(), id)
			if err != nil {
				return nil, err
			}
			return gin.H{"member": m}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[service.MemberInput, gin.H]{
		Method:  http.MethodPost,
		Binder:  ez.BindJSON,
		Auth:    true,
		Status:  http.StatusCreated,
		Message: "Member created successfully",
		Handler: func(c *gin.Context, a authz.Actor, in *service.MemberInput) (gin.H, error) {
			m, err := h.svc.Create(c.Request.Context(), a, *in)
			if err != nil {
				return nil, err
			}
			return gin.H{"member": m}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[service.MemberPatch, gin.H]{
		Method:  http.MethodPut,
		Path:    "/:id",
		Binder:  ez.BindJSON,
		Auth:    true,
		Message: "Member updated successfully",
		Handler: func(c *gin.Context, a authz.Actor, in *service.MemberPatch) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			m, err := h.svc.Update(c.Request.Context(), a, id, *in)
			if err != nil {
				return nil, err
			}
			return gin.H{"member": m}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[struct{}, any]{
		Method:  http.MethodDelete,
		Path:    "/:id",
		Auth:    true,
		Status:  http.StatusNoContent,
		Message: "Member deleted successfully",
		Handler: func(c *gin.Context, a authz.Actor, _ *struct{}) (any, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return nil, h.svc.Delete(c.Request.Context(), a, id)
		},
	})
}
