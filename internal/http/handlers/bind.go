package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

var tagNamesOnce sync.Once

// useWireNames makes validator report the json/form/uri name of a field
// instead of the Go name, so errors match what the client sent.
func useWireNames() {
	tagNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(sf reflect.StructField) string {
			for _, key := range []string{"json", "form", "uri"} {
				name, _, _ := strings.Cut(sf.Tag.Get(key), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return ""
		})
	})
}

func BindJSON(ctx *gin.Context, out interface{}) bool {
	useWireNames()
	if err := ctx.ShouldBindJSON(out); err != nil {
		RespondBadRequest(ctx, "Invalid request body", bindErrorDetails(err))
		return false
	}
	return true
}

func BindQuery(ctx *gin.Context, out interface{}) bool {
	useWireNames()
	if err := ctx.ShouldBindQuery(out); err != nil {
		RespondBadRequest(ctx, "Invalid query parameters", bindErrorDetails(err))
		return false
	}
	return true
}

func BindURI(ctx *gin.Context, out interface{}) bool {
	useWireNames()
	if err := ctx.ShouldBindUri(out); err != nil {
		RespondBadRequest(ctx, "Invalid path parameters", bindErrorDetails(err))
		return false
	}
	return true
}

func bindErrorDetails(err error) interface{} {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   wirePath(fe),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: validationMessage(fe.Tag(), fe.Param()),
			})
		}
		return gin.H{"fields": fields}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return gin.H{"json": "invalid_json_syntax"}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return gin.H{
			"json":  "invalid_json_type",
			"field": typeErr.Field,
			"fields": []FieldError{{
				Field:   typeErr.Field,
				Rule:    "type",
				Message: "must be of type " + typeErr.Type.String(),
			}},
		}
	}

	return gin.H{"reason": err.Error()}
}

// wirePath drops the root struct name from the namespace:
// "registerRequest.userId" becomes "userId".
func wirePath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "datetime":
		return "must be a date formatted as " + param
	case "gtfield":
		return "must be after " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
