package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, requireCaller e.MiddlewareFunc, importHandler *ImportHandler, prospectHandler *ProspectHandler) {
	api := server.Group("/api", requireCaller)

	api.POST("/prospect_files/import", importHandler.ImportProspects)
	api.GET("/prospects_files/:id/progress", prospectHandler.GetImportProgress)
	api.GET("/prospects", prospectHandler.ListProspects)
}
