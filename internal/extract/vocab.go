package extract

// Curated vocabularies for field extraction. Terms are canonical lowercase
// forms; matching is whole-word (or whole-phrase for multi-word terms) and
// case-insensitive.

// skillBank is the known technical/professional skill vocabulary.
var skillBank = []string{
	// Languages
	"python", "java", "javascript", "typescript", "c++", "c#", "go", "golang", "rust", "ruby",
	"php", "swift", "kotlin", "scala", "r", "matlab", "perl", "shell", "bash",
	// Frontend
	"react", "vue", "angular", "svelte", "html", "css", "sass", "tailwind", "bootstrap", "jquery",
	"redux", "nextjs", "webpack", "vite",
	// Backend
	"node", "nodejs", "express", "flask", "django", "fastapi", "spring", "springboot",
	"rails", "laravel", "dotnet", "aspnet",
	// Databases
	"sql", "nosql", "postgres", "postgresql", "mysql", "mongodb", "redis", "cassandra",
	"dynamodb", "elasticsearch", "oracle", "mssql", "sqlite",
	// Cloud
	"aws", "gcp", "azure", "lambda", "s3", "ec2", "cloudfront", "rds", "redshift",
	"cloud", "cloudformation", "ecs", "eks", "fargate",
	// DevOps and tooling
	"docker", "kubernetes", "k8s", "terraform", "ansible", "jenkins", "circleci", "github",
	"gitlab", "git", "linux", "unix", "nginx", "apache", "ci/cd", "helm",
	// Data and ML
	"pandas", "numpy", "spark", "hadoop", "airflow", "kafka", "scikit-learn", "tensorflow",
	"pytorch", "keras", "jupyter", "tableau", "powerbi", "etl", "databricks",
	// Other
	"rest", "restful", "api", "graphql", "grpc", "microservices", "agile", "scrum", "jira",
}

// titleBank is the known job-title phrase vocabulary.
var titleBank = []string{
	// Software engineering
	"software engineer", "software developer", "sde", "engineer", "developer", "programmer",
	"backend engineer", "frontend engineer", "full stack", "fullstack", "devops engineer",
	"site reliability engineer", "sre", "platform engineer", "systems engineer",
	"senior python developer", "python developer", "java developer", "go developer",
	// Data and ML
	"data engineer", "data scientist", "ml engineer", "machine learning engineer", "ai engineer",
	"data analyst", "business analyst", "analytics engineer", "research scientist",
	// Management and leadership
	"engineering manager", "technical lead", "tech lead", "team lead", "lead engineer",
	"staff engineer", "principal engineer", "senior engineer", "architect", "solutions architect",
	// Specialized
	"security engineer", "qa engineer", "test engineer", "mobile developer", "ios developer",
	"android developer", "cloud engineer", "infrastructure engineer", "network engineer",
	// Other
	"product manager", "project manager", "scrum master", "consultant", "intern", "associate",
}
