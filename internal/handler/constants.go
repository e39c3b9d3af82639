package handler

// Route pattern constants for chi router registration.
const (
	// RouteRoot is the root path.
	RouteRoot = "/"
	// RouteBlog is the blog listing.
	RouteBlog = "/blog"
	// RouteWidgetFeatured is the embeddable single-category listing.
	RouteWidgetFeatured = "/widget/featured"
	// RoutePost is the post detail page, addressed by ?slug=.
	RoutePost = "/post"
	// RouteNewsletter is the newsletter subscription endpoint.
	RouteNewsletter = "/newsletter"

	// RouteRobots is the crawler policy.
	RouteRobots = "/robots.txt"
	// RouteSitemap lists the public pages for crawlers.
	RouteSitemap = "/sitemap.xml"

	// RouteSignup is the sign-up and log-in page.
	RouteSignup = "/signup"
	// RouteLogin is the password log-in endpoint.
	RouteLogin = "/login"
	// RouteLogout is the logout endpoint.
	RouteLogout = "/logout"
	// RouteOAuthStart starts the Google sign-in.
	RouteOAuthStart = "/auth/google"
	// RouteOAuthCallback receives the OAuth redirect.
	RouteOAuthCallback = "/auth/callback"
	// RouteResetPassword requests a password reset email.
	RouteResetPassword = "/reset-password"

	// RouteAccount is the account page.
	RouteAccount = "/account"
	// RouteAccountLogout is the account page's logout button.
	RouteAccountLogout = RouteAccount + RouteLogout
	// RouteWriterApplication files a writer application.
	RouteWriterApplication = RouteAccount + "/writer-application"

	// RouteAdmin is the dashboard mount point.
	RouteAdmin = "/admin"
	// RouteParamID is the ID parameter pattern.
	RouteParamID = "/{id}"
	// RoutePosts is the posts admin route.
	RoutePosts = "/posts"
	// RoutePostsID is the posts ID route pattern.
	RoutePostsID = RoutePosts + RouteParamID
	// RoutePostSlug derives a slug from ?title=.
	RoutePostSlug = RoutePosts + "/slug"
	// RouteImages uploads inline body images.
	RouteImages = "/images"
	// RouteApplicationsID is the writer applications ID route pattern.
	RouteApplicationsID = "/applications" + RouteParamID
	// RouteUsersExport downloads the users table.
	RouteUsersExport = "/users/export"
	// RouteSubscribersExport downloads the subscribers table.
	RouteSubscribersExport = "/subscribers/export"

	// RouteSuffixEdit loads a record into the form.
	RouteSuffixEdit = "/edit"
	// RouteSuffixDelete confirms (GET) and performs (POST) a deletion.
	RouteSuffixDelete = "/delete"
	// RouteSuffixApprove approves an application.
	RouteSuffixApprove = "/approve"
	// RouteSuffixReject rejects an application.
	RouteSuffixReject = "/reject"
)

// Dashboard tabs.
const (
	TabPosts        = "posts"
	TabApplications = "applications"
	TabUsers        = "users"
	TabSubscribers  = "subscribers"
)

const (
	redirectAdmin             = RouteAdmin
	redirectAdminPosts        = redirectAdmin + "?tab=" + TabPosts
	redirectAdminApplications = redirectAdmin + "?tab=" + TabApplications
	redirectAdminUsers        = redirectAdmin + "?tab=" + TabUsers
	redirectAdminSubscribers  = redirectAdmin + "?tab=" + TabSubscribers
	redirectAdminPostsID      = redirectAdmin + RoutePosts + "/%s"
	redirectLogin             = RouteSignup + "?mode=login"
	redirectResetSent         = RouteResetPassword + "?sent=1"
)

// HeaderContentType is the Content-Type HTTP header name.
const HeaderContentType = "Content-Type"
