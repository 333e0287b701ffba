package seed

// File is the top-level structure of the seed file: a list of registrations.
//
//	- domain: svc.example.com
//	  services:
//	    - name: Mail
//	      url: https://mail.svc.example.com
type File []Entry

// Entry is one domain and the services it announces.
type Entry struct {
	Domain   string         `yaml:"domain"`
	Services []ServiceProps `yaml:"services"`
}

// ServiceProps describes one downstream service.
type ServiceProps struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}
