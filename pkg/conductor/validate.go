package conductor

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/types"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	transen "github.com/go-playground/validator/v10/translations/en"
)

type nodeGroupRequest struct {
	Name                string   `json:"name" validate:"required"`
	Count               int      `json:"count" validate:"gte=0"`
	FlavorID            string   `json:"flavor_id" validate:"required_without=NodeGroupTemplateID"`
	NodeGroupTemplateID string   `json:"node_group_template_id"`
	NodeProcesses       []string `json:"node_processes" validate:"omitempty,dive,required"`
}

type clusterRequest struct {
	Name              string             `json:"name" validate:"required"`
	PluginName        string             `json:"plugin_name" validate:"required_without=ClusterTemplateID"`
	HadoopVersion     string             `json:"hadoop_version" validate:"required_without=ClusterTemplateID"`
	ClusterTemplateID string             `json:"cluster_template_id"`
	NodeGroups        []nodeGroupRequest `json:"node_groups" validate:"dive"`
}

type clusterTemplateRequest struct {
	Name          string             `json:"name" validate:"required"`
	PluginName    string             `json:"plugin_name" validate:"required"`
	HadoopVersion string             `json:"hadoop_version" validate:"required"`
	NodeGroups    []nodeGroupRequest `json:"node_groups" validate:"dive"`
}

type nodeGroupTemplateRequest struct {
	Name          string   `json:"name" validate:"required"`
	PluginName    string   `json:"plugin_name" validate:"required"`
	HadoopVersion string   `json:"hadoop_version" validate:"required"`
	FlavorID      string   `json:"flavor_id" validate:"required"`
	NodeProcesses []string `json:"node_processes" validate:"required,min=1,dive,required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

func requestValidator() (*validator.Validate, ut.Translator) {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		locale := en.New()
		translator, _ = ut.New(locale, locale).GetTranslator("en")
		if err := transen.RegisterDefaultTranslations(validate, translator); err != nil {
			translator = nil
		}
	})
	return validate, translator
}

// ValidateCluster checks the shape of a cluster create request
func ValidateCluster(values types.Values) error {
	return validateRequest("cluster", values, &clusterRequest{})
}

// ValidateClusterTemplate checks the shape of a cluster template request
func ValidateClusterTemplate(values types.Values) error {
	return validateRequest("cluster template", values, &clusterTemplateRequest{})
}

// ValidateNodeGroupTemplate checks the shape of a node group template request
func ValidateNodeGroupTemplate(values types.Values) error {
	return validateRequest("node group template", values, &nodeGroupTemplateRequest{})
}

func validateRequest(kind string, values types.Values, req interface{}) error {
	if err := types.Decode(values, req); err != nil {
		return errors.Wrap(err, errors.CodeInvalidData, "malformed "+kind)
	}
	v, trans := requestValidator()
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, errors.CodeInvalidData, "invalid "+kind)
	}

	var problems []string
	for _, fe := range verrs {
		if trans != nil {
			problems = append(problems, fe.Namespace()+": "+fe.Translate(trans))
		} else {
			problems = append(problems, fe.Namespace()+": failed '"+fe.Tag()+"'")
		}
	}
	sort.Strings(problems)
	return errors.InvalidData("invalid " + kind + ": " + strings.Join(problems, "; ")).
		WithDetail("problems", problems)
}
