package handlers

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/orsocook/orso-auth/internal/infra/config"
)

const swaggerDocURL = "/docs/doc.json"

// RegisterSwagger mounts the Swagger UI under /docs. Production deployments do not expose it.
func RegisterSwagger(r *gin.Engine, app config.AppSettings) {
	if app.IsProduction() {
		return
	}
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL(swaggerDocURL),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))
}
